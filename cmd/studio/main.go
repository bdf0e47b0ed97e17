// Command studio drives storyboard projects from the terminal: it edits drafts
// through the autosaving session, runs image jobs and exports their results.
package main

import (
	"os"
)

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
