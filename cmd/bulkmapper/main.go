// Command bulkmapper maps files of company names, domains, merchant strings
// or product strings to company records.
//
// Usage:
//
//	bulkmapper run -e domain -k $KEY domains.txt
//	bulkmapper query -e merchant "AMZN Mktp US"
//	bulkmapper history --journal runs.db
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
