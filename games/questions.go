// Package games holds the shared prompt data for soapbox.
//
// Each session draws a single question at creation and keeps it for its
// whole lifetime. Players answer in the political voice of whoever they
// were secretly assigned to play as, then rate each other's answers on
// how authentic they sound.
package games

// Questions are the round prompts, drawn uniformly at session creation.
var Questions = []string{
	"Should parliament be able to pass any law it likes?",
	"What do you make of the attorney general's conduct around the judicial reform and the protests?",
	"Is a corrupt politician who advances my agenda better than an honest one who doesn't?",
	"Should voting be mandatory?",
	"Would you raise taxes to fund universal childcare?",
	"Is civil disobedience ever the right response to a law you consider unjust?",
	"Should the courts be able to strike down legislation?",
	"What single policy would you change first if you were in charge tomorrow?",
}
