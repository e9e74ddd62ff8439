// Package catalogs provides the embedded design-token catalog data.
package catalogs

import _ "embed"

// DS4DSJSON is the bundled DS4DS token and component catalog, embedded at build time.
//
//go:embed ds4ds/catalog.json
var DS4DSJSON []byte
