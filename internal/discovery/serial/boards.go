// internal/discovery/serial/boards.go - known USB serial bridges
package serial

import "strings"

// BoardDatabase names the USB-serial bridges microcontroller boards ship with
type BoardDatabase struct {
	vendors map[string]*VendorInfo
}

// VendorInfo holds a vendor name and its known products
type VendorInfo struct {
	Name     string
	products map[string]string
}

// NewBoardDatabase creates and initializes the board database
func NewBoardDatabase() *BoardDatabase {
	db := &BoardDatabase{vendors: make(map[string]*VendorInfo)}
	db.initializeDatabase()
	return db
}

func (db *BoardDatabase) initializeDatabase() {
	db.AddVendor("2341", "Arduino")
	db.AddProduct("2341", "0043", "Arduino Uno")
	db.AddProduct("2341", "0001", "Arduino Uno")
	db.AddProduct("2341", "0010", "Arduino Mega 2560")
	db.AddProduct("2341", "0042", "Arduino Mega 2560")
	db.AddProduct("2341", "8036", "Arduino Leonardo")
	db.AddProduct("2341", "8037", "Arduino Micro")
	db.AddProduct("2341", "0058", "Arduino Nano Every")

	db.AddVendor("2A03", "Arduino (arduino.org)")
	db.AddProduct("2A03", "0043", "Arduino Uno")

	db.AddVendor("1A86", "QinHeng CH340")
	db.AddProduct("1A86", "7523", "CH340 USB-serial bridge")

	db.AddVendor("0403", "FTDI")
	db.AddProduct("0403", "6001", "FT232R USB-serial bridge")
	db.AddProduct("0403", "6015", "FT231X USB-serial bridge")

	db.AddVendor("10C4", "Silicon Labs CP210x")
	db.AddProduct("10C4", "EA60", "CP2102 USB-serial bridge")
}

// AddVendor registers a vendor
func (db *BoardDatabase) AddVendor(vendorID, name string) {
	db.vendors[strings.ToUpper(vendorID)] = &VendorInfo{
		Name:     name,
		products: make(map[string]string),
	}
}

// AddProduct registers a product of an already registered vendor
func (db *BoardDatabase) AddProduct(vendorID, productID, name string) {
	if vendor, ok := db.vendors[strings.ToUpper(vendorID)]; ok {
		vendor.products[strings.ToUpper(productID)] = name
	}
}

// IsKnownVendor reports whether vendorID is a known bridge vendor
func (db *BoardDatabase) IsKnownVendor(vendorID string) bool {
	_, ok := db.vendors[strings.ToUpper(vendorID)]
	return ok
}

// Lookup returns the product name, or the vendor name for unknown products
func (db *BoardDatabase) Lookup(vendorID, productID string) (string, bool) {
	vendor, ok := db.vendors[strings.ToUpper(vendorID)]
	if !ok {
		return "", false
	}
	if name, ok := vendor.products[strings.ToUpper(productID)]; ok {
		return name, true
	}
	return vendor.Name, true
}
