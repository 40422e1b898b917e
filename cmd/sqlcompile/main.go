// Command sqlcompile compiles whitelisted query documents into
// parameterized SQL for PostgreSQL or a minimal SQLite dialect.
package main

func main() {
	Execute()
}
