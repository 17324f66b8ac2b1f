// Command docsift acquires public-comment attachments, extracts their text,
// indexes it for full-text search and groups the corpus by topic.
package main

import (
	"os"

	"github.com/Aman-CERP/docsift/cmd/docsift/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
