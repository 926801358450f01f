// Package security summarizes the security posture implied by an engine
// configuration. The binary logs the summary at startup; operators can also
// read it through Engine.SecurityReport.
//
// # What this package must NOT do
//
//   - Read configuration sources directly. Callers pass a ReportInput.
//   - Decide whether a configuration is acceptable. Validation lives in the root package.
package security
