/*
Package slurp copies values across transactions of a StateModel.

A binding names one source element and any number of sink elements with
slash-separated selectors over the whole StateModel:

	/<state>/<action>/<model>/<element>/...

A step may be a name or "*" (any single name); "//" matches zero or more
steps. A selector without a leading "/" behaves as if it started with "//".

# Strategies

The first (control recording) iteration resolves both selectors, copies the
source's authored value onto every sink and stores the concrete sink paths
in a ports.SlurpCache. Later iterations skip selector evaluation and write
straight to the recorded paths, silently skipping those that no longer
resolve. StrategyFor picks between the two from an explicit flag.
*/
package slurp
