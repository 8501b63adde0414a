// Package catalog enumerates the local book library.
//
// A library is a directory of .epub files. Files placed directly under the
// root have no category; files one level below take the sub-directory name
// as their category:
//
//	library/
//	  A.epub
//	  sci-fi/
//	    Three Body.epub
//	    Three Body.txt   (optional sidecar metadata)
//
// Every file is identified by an identity key produced by NormalizeKey. The
// same function is used when deriving keys from channel messages, so the two
// sides of a reconciliation always agree on what "the same book" means.
//
// # Usage
//
//	listing, err := catalog.Scan(root, catalog.ScanOptions{}, logger)
//	if err != nil {
//	    return err // *catalog.ScanError
//	}
//	for item := range listing.Items() {
//	    fmt.Println(item.Key, item.Path)
//	}
package catalog
