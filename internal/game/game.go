package game

// Version of the race protocol.
// Bumping this number lets clients detect an incompatible server.
var Version = "v0.1.0"

// CountdownFrom is the first count broadcast when a race is started.
// The countdown then ticks once per second down to 1, and the race begins
// when it reaches 0.
var CountdownFrom = 5

// TimeModeWords is the number of words generated for a "time" race, large
// enough that no one is expected to run out before the time limit.
var TimeModeWords = 200
