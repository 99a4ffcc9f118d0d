// Package repository provides a generic repository abstraction built on Bun
// for CRUD operations, paging, derived queries named like
// findByUsernameAndAgeGreaterThan, transactions bound to a context and a
// session that tracks loaded entities until they are flushed.
package repository
