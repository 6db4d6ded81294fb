// Package cli implements the folio admin dashboard as an interactive REPL.
//
// On start the CLI restores the previous session from the remembered
// refresh token. Content commands run only while the authorization gate
// admits the session; everyone else is told "You are not authorized to
// access this page." and signed-in non-admins are signed out again.
//
// Commands
//
//	help                              show available commands
//	register                          create an account
//	login | logout                    start or end the session
//	list   <collection>               list records
//	add    <collection>               create a record (prompts per field)
//	edit   <collection> <id>          update a record (empty input keeps a field)
//	delete <collection> <id>          delete a record and its image
//	upload <collection> <file>        upload an image and print its URL
//	stats                             analytics report for the last 30 days
//	exit | quit                       leave
//
// Collections: case-studies, latest-works, projects.
package cli
