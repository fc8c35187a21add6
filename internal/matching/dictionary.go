package matching

// stopwords are dropped before alias folding. The list mixes generic English
// function words with the noise vocabulary of prediction-market titles.
var stopwords = toSet(
	// English function words.
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "could", "did", "do", "does", "doing",
	"down", "during", "each", "either", "else", "ever", "few", "for", "from",
	"further", "get", "gets", "got", "had", "has", "have", "having", "he", "her",
	"here", "hers", "him", "his", "how", "if", "in", "into", "is", "it", "its",
	"itself", "just", "least", "less", "many", "may", "me", "might", "more",
	"most", "much", "must", "my", "neither", "no", "nor", "not", "now", "of",
	"off", "on", "once", "one", "only", "or", "other", "our", "ours", "out",
	"over", "own", "same", "shall", "she", "should", "so", "some", "such",
	"than", "that", "the", "their", "theirs", "them", "then", "there", "these",
	"they", "this", "those", "through", "to", "too", "under", "until", "up",
	"upon", "very", "via", "vs", "was", "we", "were", "what", "when", "where",
	"whether", "which", "while", "who", "whom", "whose", "why", "will", "with",
	"within", "without", "would", "yes", "yet", "you", "your", "yours",

	// Market noise.
	"price", "prices", "market", "markets", "prediction", "predictions", "odds",
	"chance", "chances", "probability", "bet", "bets", "happen", "happens",
	"occur", "next", "new", "end", "ends", "start", "starts", "begin",
	"another", "first", "last", "any", "least", "most", "than", "more",
	"question", "resolve", "resolves", "resolution", "official", "officially",
	"announce", "announced", "announces", "by", "eoy", "yet", "still", "ever",
	"say", "says", "said", "become", "becomes", "make", "makes", "take",
	"takes", "week", "weeks", "month", "months", "year", "years", "day", "days",
	"today", "tomorrow", "tonight", "date", "time", "times", "q1", "q2", "q3",
	"q4", "h1", "h2", "est", "edt", "utc",

	// Months.
	"january", "february", "march", "april", "june", "july", "august",
	"september", "october", "november", "december",
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct",
	"nov", "dec",

	// Years.
	"2024", "2025", "2026", "2027", "2028", "2029", "2030",
)

// aliases fold surface variants onto one canonical entity.
var aliases = map[string]string{
	"btc":          "bitcoin",
	"xbt":          "bitcoin",
	"eth":          "ethereum",
	"ether":        "ethereum",
	"sol":          "solana",
	"doge":         "dogecoin",
	"xrp":          "ripple",
	"dem":          "democrat",
	"dems":         "democrat",
	"democrats":    "democrat",
	"democratic":   "democrat",
	"gop":          "republican",
	"rep":          "republican",
	"reps":         "republican",
	"republicans":  "republican",
	"acquire":      "buy",
	"acquires":     "buy",
	"acquired":     "buy",
	"acquisition":  "buy",
	"purchase":     "buy",
	"purchases":    "buy",
	"buys":         "buy",
	"bought":       "buy",
	"trumps":       "trump",
	"donald":       "trump",
	"potus":        "president",
	"presidential": "president",
	"wins":         "win",
	"won":          "win",
	"winner":       "win",
	"winning":      "win",
	"usa":          "america",
	"uk":           "britain",
	"fed":          "federal",
	"nyc":          "newyork",
}

// templateWords describe a market's category or pattern. They are entities
// but never subjects.
var templateWords = toSet(
	// People and offices reused across many markets.
	"trump", "biden", "president", "vice", "governor", "mayor", "senator",
	"speaker", "secretary", "minister", "prime", "chair", "chairman", "ceo",
	"cabinet", "administration", "congress", "house", "senate", "parliament",
	"supreme", "court",

	// Election and politics templates.
	"election", "elections", "primary", "nomination", "nominee", "candidate",
	"race", "seat", "seats", "majority", "control", "party", "vote", "votes",
	"poll", "polls", "approval", "rating", "impeach", "impeached", "resign",
	"leave", "fired", "removed", "out", "confirmed", "appointed",

	// Sports templates.
	"win", "championship", "finals", "final", "series", "cup", "title", "league",
	"season", "game", "match", "playoffs", "tournament", "bowl", "super", "mvp",
	"award", "team", "beat",

	// Economics and crypto templates.
	"rate", "rates", "cut", "cuts", "hike", "hikes", "interest", "inflation",
	"gdp", "recession", "reach", "hit", "close", "high", "low", "all",
	"federal", "reserve", "meeting", "bps",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
