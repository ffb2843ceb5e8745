// spin is an aggregator module that never returns.
package main

func main() {
	for {
	}
}
