/*
Package templating composes posts from markov models using text/template.

Templates are Markdown files named *.tmpl.md in a single directory; shared
blocks live in *.part.md files and are available to every template. The
engine supports hot-reloading through Refresh, so templates can be changed
without restarting the process.

Besides the usual helpers (repeat, list, randomChoice, randomInt, add, sub,
upper, lower), templates can call markovSentence and markovParagraphs to
generate text from a named model:

	# {{ markovSentence "prince" 12 }}

	{{ markovParagraphs "prince" 3 2 5 10 30 }}

A reference to a model the Generator does not know fails the execution.
ModelMap is the simplest Generator, a fixed set of in-memory models keyed by
name.
*/
package templating
