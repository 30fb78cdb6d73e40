package storage

import "fmt"

// limitOffsetClause returns a LIMIT/OFFSET clause using the next two
// placeholder positions after argCount existing args.
func limitOffsetClause(argCount int) string {
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount+1, argCount+2)
}
