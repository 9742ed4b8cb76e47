package godb

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Catalog holds the tuple descriptor and backing-file location the rest of
// the engine needs to open a table, parsed from a catalog file (§6): each
// line reads `name(col type [pk], col type, ...)`, type in {int, string},
// with an optional `pk` marking a primary key column.
type Catalog struct {
	dir    string
	tables map[string]*TupleDesc
	pkey   map[string]string
}

// LoadCatalog parses catalogFile and resolves each table's `.dat` backing
// file relative to the catalog file's own directory, per §6 ("one .dat file
// per table in the catalog file's directory").
func LoadCatalog(catalogFile string) (*Catalog, error) {
	f, err := os.Open(catalogFile)
	if err != nil {
		return nil, newGoDBError(IOError, "opening catalog %s: %v", catalogFile, err)
	}
	defer f.Close()

	cat := &Catalog{
		dir:    filepath.Dir(catalogFile),
		tables: make(map[string]*TupleDesc),
		pkey:   make(map[string]string),
	}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, desc, pk, err := parseCatalogLine(line)
		if err != nil {
			return nil, newGoDBError(MalformedDataError, "catalog line %d: %v", lineNo, err)
		}
		cat.tables[name] = desc
		cat.pkey[name] = pk
	}
	if err := scanner.Err(); err != nil {
		return nil, newGoDBError(IOError, "reading catalog %s: %v", catalogFile, err)
	}
	return cat, nil
}

// parseCatalogLine parses one `name(col type [pk], ...)` line into a table
// name, TupleDesc, and primary key column name (empty if none was marked).
func parseCatalogLine(line string) (string, *TupleDesc, string, error) {
	open := strings.IndexByte(line, '(')
	close := strings.LastIndexByte(line, ')')
	if open < 0 || close < open {
		return "", nil, "", newGoDBError(MalformedDataError, "missing parens in %q", line)
	}
	name := strings.TrimSpace(line[:open])
	if name == "" {
		return "", nil, "", newGoDBError(MalformedDataError, "missing table name in %q", line)
	}

	body := line[open+1 : close]
	var fields []FieldType
	pk := ""
	for _, col := range strings.Split(body, ",") {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		parts := strings.Fields(col)
		if len(parts) < 2 {
			return "", nil, "", newGoDBError(MalformedDataError, "malformed column %q", col)
		}
		fname := parts[0]
		var ftype DBType
		switch strings.ToLower(parts[1]) {
		case "int":
			ftype = IntType
		case "string":
			ftype = StringType
		default:
			return "", nil, "", newGoDBError(MalformedDataError, "unknown type %q for column %q", parts[1], fname)
		}
		fields = append(fields, FieldType{Fname: fname, TableQualifier: name, Ftype: ftype})
		if len(parts) >= 3 && strings.EqualFold(parts[2], "pk") {
			pk = fname
		}
	}
	return name, &TupleDesc{Fields: fields}, pk, nil
}

// Tables returns the names of every table declared in the catalog.
func (c *Catalog) Tables() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	return names
}

// Descriptor returns the TupleDesc for name, or nil if name is not in the
// catalog.
func (c *Catalog) Descriptor(name string) *TupleDesc {
	return c.tables[name]
}

// PrimaryKey returns the primary key column name for name, or "" if none was
// declared.
func (c *Catalog) PrimaryKey(name string) string {
	return c.pkey[name]
}

// BackingFile returns the `.dat` path this catalog resolves name to.
func (c *Catalog) BackingFile(name string) string {
	return filepath.Join(c.dir, name+".dat")
}
