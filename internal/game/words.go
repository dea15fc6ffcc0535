package game

import "math/rand/v2"

// vocabulary is the fixed list race words are drawn from.
var vocabulary = []string{
	"ability", "able", "about", "above", "accept", "according", "account", "across",
	"action", "activity", "actually", "address", "administration", "admit", "adult", "affect",
	"after", "again", "against", "agency", "agent", "agree", "agreement", "ahead",
	"allow", "almost", "alone", "along", "already", "also", "although", "always",
	"among", "amount", "analysis", "animal", "another", "answer", "anyone", "anything",
	"appear", "apply", "approach", "area", "argue", "around", "arrive", "article",
	"artist", "assume", "attack", "attention", "attorney", "audience", "author", "authority",
	"available", "avoid", "away", "baby", "back", "ball", "bank", "base",
	"beat", "beautiful", "because", "become", "before", "begin", "behavior", "behind",
	"believe", "benefit", "best", "better", "between", "beyond", "billion", "black",
	"blood", "blue", "board", "body", "book", "born", "both", "break",
	"bring", "brother", "budget", "build", "building", "business", "call", "camera",
	"campaign", "cancer", "candidate", "capital", "card", "care", "career", "carry",
	"case", "catch", "cause", "cell", "center", "central", "century", "certain",
	"certainly", "chair", "challenge", "chance", "change", "character", "charge", "check",
	"child", "choice", "choose", "church", "citizen", "city", "civil", "claim",
	"class", "clear", "clearly", "close", "coach", "cold", "collection", "college",
	"color", "come", "commercial", "common", "community", "company",
}

// GenerateWords returns count words drawn independently and uniformly at
// random, with replacement, from the vocabulary. Repeated words are expected.
//
// count must be positive; a non-positive count returns an empty slice.
func GenerateWords(count int) []string {
	if count <= 0 {
		return []string{}
	}
	words := make([]string, count)
	for i := range words {
		words[i] = vocabulary[rand.IntN(len(vocabulary))]
	}
	return words
}
