// Package compliance holds compliance assertions and evaluates them.
//
// An assertion relates an ordered list of two or more variables. Each of its
// clauses carries one regular expression per variable: the patterns for all
// but the last variable form the antecedent, the last one the consequent.
// Patterns are matched unanchored against the rendered value of each
// variable, with unset values rendered as "None".
//
// An accept clause fails when the antecedent matches and the consequent does
// not, unless the consequent is still unset. A reject clause fails when both
// match; a reject pattern may name "None" to forbid an unset consequent.
// Accept clauses run before reject clauses, each in registration order, and
// the first failing clause decides the message.
package compliance
