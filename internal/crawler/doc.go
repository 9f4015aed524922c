// Package crawler drives the directory traversal: it walks listing pages,
// hands each new profile link to an Extractor and records usable results in a
// Store until the target is met, the directory runs out, or the operator
// interrupts the run.
package crawler
