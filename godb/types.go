package godb

// PageSize is the fixed size, in bytes, of every page in every HeapFile.
var PageSize int = 4096

// StringLength is the fixed width, in bytes, reserved for a StringField.
// writeStringField stores at most StringLength bytes of a string and drops
// the rest; HeapFile.LoadFromCSV truncates longer CSV values itself.
var StringLength int = 32
