// Package index holds the read-side projection of the current session: its
// id and file names in server order. Readers never block writers.
package index
