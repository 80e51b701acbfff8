// Command markiavelli trains Markov chain text models from corpora, generates
// text from them and serves them over a JSON API.
package main

// Set at build time with -ldflags "-X main.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	Execute()
}
