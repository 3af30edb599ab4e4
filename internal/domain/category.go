package domain

import "strings"

// Category es una de las categorías fijas de mercado.
type Category string

const (
	CategoryPolitics  Category = "Politics"
	CategorySports    Category = "Sports"
	CategoryCrypto    Category = "Crypto"
	CategoryCulture   Category = "Culture"
	CategoryFinance   Category = "Finance"
	CategoryEconomics Category = "Economics"
	CategoryTech      Category = "Tech"
	CategoryWeather   Category = "Weather"
	CategoryOther     Category = "Other"
)

// Categories es el orden de prioridad de la clasificación. El primero que
// matchea gana, aunque las keywords de varias categorías se solapen.
var Categories = []Category{
	CategoryPolitics,
	CategorySports,
	CategoryCrypto,
	CategoryCulture,
	CategoryFinance,
	CategoryEconomics,
	CategoryTech,
	CategoryWeather,
	CategoryOther,
}

// CategoryColors es el color de display fijo de cada categoría.
var CategoryColors = map[Category]string{
	CategoryPolitics:  "#3b82f6",
	CategorySports:    "#10b981",
	CategoryCrypto:    "#f59e0b",
	CategoryCulture:   "#ec4899",
	CategoryFinance:   "#8b5cf6",
	CategoryEconomics: "#06b6d4",
	CategoryTech:      "#6366f1",
	CategoryWeather:   "#84cc16",
	CategoryOther:     "#6b7280",
}

var categoryKeywords = map[Category][]string{
	CategoryPolitics: {
		"trump", "biden", "election", "president", "presidential", "senate", "congress",
		"governor", "democrat", "democrats", "republican", "republicans", "vote", "harris",
		"parliament", "prime minister", "mayor", "impeach", "impeachment", "nominee", "gop",
		"primary", "cabinet", "putin", "zelensky",
	},
	CategorySports: {
		"nfl", "nba", "mlb", "nhl", "ufc", "soccer", "football", "basketball", "baseball",
		"hockey", "tennis", "golf", "super bowl", "world cup", "championship", "playoffs",
		"premier league", "champions league", "f1", "boxing", "vs", "o/u", "spread", "mvp",
	},
	CategoryCrypto: {
		"bitcoin", "btc", "ethereum", "eth", "crypto", "solana", "sol", "xrp", "dogecoin",
		"doge", "blockchain", "defi", "nft", "binance", "coinbase", "memecoin", "stablecoin",
	},
	CategoryCulture: {
		"movie", "film", "oscar", "oscars", "grammy", "grammys", "emmy", "album", "song",
		"celebrity", "taylor swift", "netflix", "music", "box office", "tiktok", "youtube",
		"spotify", "billboard",
	},
	CategoryFinance: {
		"stock", "stocks", "s&p", "s&p 500", "nasdaq", "dow", "tesla", "earnings", "ipo",
		"shares", "market cap", "gold", "oil",
	},
	CategoryEconomics: {
		"fed", "interest rate", "interest rates", "inflation", "cpi", "gdp", "recession",
		"unemployment", "jobs report", "rate cut", "rate hike", "tariff", "tariffs", "economy",
	},
	CategoryTech: {
		"ai", "openai", "chatgpt", "apple", "google", "microsoft", "meta", "spacex",
		"iphone", "gpt", "nvidia", "anthropic", "starship",
	},
	CategoryWeather: {
		"weather", "temperature", "hurricane", "snow", "rain", "climate", "heat", "tornado",
		"storm",
	},
}

// Classify asigna la categoría al título por keywords, en orden de prioridad.
// El match es por substring sin distinguir mayúsculas: "eth" matchea
// "Netherlands". Sin match devuelve Other.
func Classify(title string) Category {
	text := strings.ToLower(strings.TrimSpace(title))
	if text == "" {
		return CategoryOther
	}
	for _, cat := range Categories {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(text, kw) {
				return cat
			}
		}
	}
	return CategoryOther
}
