// Package formats registers the record formats the service ships with.
// Import it for its side effects:
//
//	import _ "github.com/JonMunkholm/flatfile/internal/formats"
//
// Each file registers the formats for one kind of input from init.
package formats
