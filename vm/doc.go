// Package vm implements the tinyscript register machine.
//
// This package contains:
//   - Data types and the byte-addressed variable store
//   - The symbol table and compilation context
//   - Opcodes, operands and the segmented instruction builder
//   - The machine: register file, flags, stack and fault reporting
package vm
