package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB API ---

// clobMarket es la respuesta de GET /markets/{condition_id}.
type clobMarket struct {
	ConditionID string      `json:"condition_id"`
	Question    string      `json:"question"`
	MarketSlug  string      `json:"market_slug"`
	Image       string      `json:"image"`
	Icon        string      `json:"icon"`
	Tokens      []clobToken `json:"tokens"`
	Active      bool        `json:"active"`
	Closed      bool        `json:"closed"`
	Archived    bool        `json:"archived"`
}

// clobToken representa un token (outcome) en el CLOB.
type clobToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket contiene la metadata de un mercado.
type gammaMarket struct {
	ConditionID string `json:"conditionId"`
	Question    string `json:"question"`
	Slug        string `json:"slug"`
	Image       string `json:"image"`
	Icon        string `json:"icon"`
	Active      bool   `json:"active"`
	Closed      bool   `json:"closed"`
}

// --- Data API ---

// dataPosition es un item de GET /positions.
// La Data API devuelve algunos campos numéricos como strings JSON, usamos json.Number.
type dataPosition struct {
	ProxyWallet  string      `json:"proxyWallet"`
	Asset        string      `json:"asset"`
	ConditionID  string      `json:"conditionId"`
	Size         json.Number `json:"size"`
	AvgPrice     json.Number `json:"avgPrice"`
	CurPrice     json.Number `json:"curPrice"`
	Outcome      string      `json:"outcome"`
	Title        string      `json:"title"`
	Slug         string      `json:"slug"`
	Icon         string      `json:"icon"`
	Redeemable   bool        `json:"redeemable"`
	NegativeRisk bool        `json:"negativeRisk"`
}
