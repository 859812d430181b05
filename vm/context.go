package vm

// Context is the state one compilation unit shares between the parser and
// the machine: the symbol table and the variable store it allocates from.
// A Context is not safe for concurrent use; callers that compile from
// several goroutines serialize access themselves.
type Context struct {
	Symbols *SymbolTable
	Storage *Storage
}

// NewContext returns an empty context.
func NewContext() *Context {
	storage := NewStorage()
	return &Context{
		Symbols: NewSymbolTable(storage),
		Storage: storage,
	}
}

// Reset starts a new compilation unit: all symbols and storage are dropped.
func (c *Context) Reset() {
	c.Symbols.Reset()
	c.Storage.Reset()
}
