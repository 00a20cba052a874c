// Command docketctl is the operator CLI for Docket. It works directly against
// the configured store, so it needs the same configuration as the server but
// not a running server.
package main
