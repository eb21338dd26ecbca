// Command quicklook runs the observation quality portal: the web server,
// plus maintenance helpers for the archive and engineering databases.
package main

func main() {
	Execute()
}
