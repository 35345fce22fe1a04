// Package model provides the entity model graph consumed by navigation
// expansion.
//
// The model is read-only once built. All other engine packages import model;
// model imports nothing internal. A Model is produced by Builder.Build (or by
// the CUE compiler, which drives a Builder) and is safe for concurrent readers.
//
// Key concepts:
//   - EntityType: a mapped record type with scalar properties, a primary key
//     and zero or more alternate keys.
//   - ForeignKey: the relationship between a dependent entity (which declares
//     the foreign-key properties) and a principal entity (which declares the
//     referenced key).
//   - Navigation: a named member on one side of a ForeignKey. A navigation on
//     the dependent points at the principal (reference); a navigation on the
//     principal points at the dependents (collection unless the foreign key is
//     unique).
//
// CRITICAL PATTERNS:
//
// Fail-fast configuration:
// Builder.Build validates the whole graph before returning it. Missing
// properties, empty keys and key type mismatches are reported as *ConfigError
// so no query is ever expanded against a broken relationship.
//
// Declared order:
// Key and foreign-key properties keep their declared order. Composite join
// keys are built pairwise from these slices, so order is part of the contract.
package model
