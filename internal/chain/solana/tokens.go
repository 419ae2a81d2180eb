package solana

// tokenInfo describes a known SPL token mint.
type tokenInfo struct {
	Symbol string
	Name   string
}

// splTokens maps well-known mint addresses to their token metadata.
// Mints outside this table surface with the generic "SPL Token" symbol.
var splTokens = map[string]tokenInfo{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {Symbol: "USDC", Name: "USD Coin"},
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {Symbol: "USDT", Name: "Tether USD"},
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": {Symbol: "BONK", Name: "Bonk"},
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  {Symbol: "JUP", Name: "Jupiter"},
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": {Symbol: "RAY", Name: "Raydium"},
	"MNDEFzGvMt87ueuHvVU9VcTqsAP5b3fTGPsHuuPA5ey":  {Symbol: "MNDE", Name: "Marinade"},
	"7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj": {Symbol: "stSOL", Name: "Lido Staked SOL"},
	"So11111111111111111111111111111111111111112":  {Symbol: "WSOL", Name: "Wrapped SOL"},
	"2zMMhcVQEXDtdE6vsFS7S7D5oUodfJHE8vd1gnBouauv": {Symbol: "PENGU", Name: "Pudgy Penguins"},
}
