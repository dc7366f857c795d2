// Package ir defines the rule-set intermediate representation for caseconf.
//
// A RuleSet is what the compiler produces from CUE or HCL sources and what
// engine.Session consumes at setup: variable definitions, compliance
// assertions and derived-option declarations. Value is the tagged variant
// every configuration variable holds.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal.
package ir
