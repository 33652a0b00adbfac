// Package types defines the shared data model of the JAVIS core: the
// request-scoped state threaded through the workflow engine, the
// classification and tool-plan results, retrieved evidence, the capability
// contract implemented by every handler and tool, and the unified error
// taxonomy.
//
// The types package is the lowest-level package with no internal
// dependencies, so every other package can import it without creating
// circular imports.
package types
