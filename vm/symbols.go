package vm

import "github.com/pkg/errors"

// Symbol is a declared variable: its name, its type and the byte offset of
// its storage.
type Symbol struct {
	Name   string
	Type   DataType
	Offset int
}

// SymbolTable maps variable names to storage. Each name is declared once;
// its storage is allocated from the table's Storage at declaration time.
type SymbolTable struct {
	storage *Storage
	entries map[string]Symbol
	order   []string
}

// NewSymbolTable returns an empty table allocating from storage.
func NewSymbolTable(storage *Storage) *SymbolTable {
	return &SymbolTable{
		storage: storage,
		entries: make(map[string]Symbol),
	}
}

// Declare registers name with type t and allocates its storage. Declaring
// an existing name returns the existing symbol unchanged.
func (t *SymbolTable) Declare(name string, typ DataType) (Symbol, error) {
	if sym, ok := t.entries[name]; ok {
		return sym, nil
	}
	offset, err := t.storage.Allocate(typ)
	if err != nil {
		return Symbol{}, errors.Wrapf(err, "declare %s", name)
	}
	sym := Symbol{Name: name, Type: typ, Offset: offset}
	t.entries[name] = sym
	t.order = append(t.order, name)
	return sym, nil
}

// Lookup returns the symbol for name.
func (t *SymbolTable) Lookup(name string) (Symbol, bool) {
	sym, ok := t.entries[name]
	return sym, ok
}

// IsDeclared reports whether name has been declared.
func (t *SymbolTable) IsDeclared(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// Symbols returns every symbol in declaration order.
func (t *SymbolTable) Symbols() []Symbol {
	out := make([]Symbol, len(t.order))
	for i, name := range t.order {
		out[i] = t.entries[name]
	}
	return out
}

// Len returns the number of declared symbols.
func (t *SymbolTable) Len() int { return len(t.order) }

// Reset forgets every symbol. It does not touch storage.
func (t *SymbolTable) Reset() {
	t.entries = make(map[string]Symbol)
	t.order = nil
}
