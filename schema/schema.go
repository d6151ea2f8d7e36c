// schema package holds the database layouts shipped with lmfdb.
//
// `postgres/N/*.sql` are applied in order of N by the schema upgrader.
package schema

import (
	"embed"
	"io/fs"
)

//go:embed postgres
var files embed.FS

// Postgres returns the repository of postgres schema versions.
func Postgres() fs.FS {
	sub, err := fs.Sub(files, "postgres")
	if err != nil {
		panic(err) // embedded; it should be there.
	}
	return sub
}
