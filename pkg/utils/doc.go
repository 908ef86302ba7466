// Package utils provides shared helpers for the memento project:
// bounded concurrent execution, panic recovery, and vector math.
package utils
