// Command shelfauth serves the shelf sign-in, session and catalog API.
package main

func main() {
	Execute()
}
