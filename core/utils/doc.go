// Package utils provides small helpers shared by the HTTP handlers and the
// CLI: loose conversion of decoded JSON values and message wording.
package utils
