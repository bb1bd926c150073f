// hypermath is a conversational math tutor with visual explanations.
package main

import "github.com/linanwx/hypermath/cmd"

func main() {
	cmd.Execute()
}
