// Package extract recovers profile fields from rendered directory documents.
//
// Every field is modeled as a Chain: an ordered list of Strategy functions
// sharing the contract (document) -> candidates. Chain.Run returns the result
// of the first strategy that yields a non-empty candidate; later strategies
// never supplement earlier ones, and a strategy that fails is treated as
// having found nothing.
//
// Site-specific structural markers live in Selectors and may be overridden
// from configuration.
package extract
