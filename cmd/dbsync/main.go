// Command dbsync reconciles a live MySQL/MariaDB schema against a declarative
// data model, emitting and executing the DDL needed to converge the two.
package main

func main() {
	Execute()
}
