// Command dbsafe-osc analyzes MySQL DDL/DML before you run it and
// performs large schema changes online via shadow-table copy.
package main

import "github.com/nethalo/dbsafe-osc/cmd"

func main() {
	cmd.Execute()
}
