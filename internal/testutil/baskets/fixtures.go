package baskets

// Fixture is a named, reusable set of baskets.
type Fixture struct {
	Build       func() *Builder
	Name        string
	Description string
}

// Predefined fixtures for common test scenarios.
var (
	// FixturePair has X and Y together in three of four baskets and X alone
	// in the fourth: support(X,Y)=0.75, confidence(Y->X)=1, lift=1.
	FixturePair = Fixture{
		Name:        "Pair",
		Description: "Two families that almost always sell together",
		Build: func() *Builder {
			return NewBuilder("101", 2021, 1).
				WithCategories(map[string]string{"X": "C1", "Y": "C2"}).
				Repeat(3, "X", "Y").
				Basket("X")
		},
	}

	// FixtureMarket is a small grocery week: bread and butter are bought
	// together more often than chance, milk is everywhere.
	FixtureMarket = Fixture{
		Name:        "Market",
		Description: "Five families over ten baskets with one strong association",
		Build: func() *Builder {
			return NewBuilder("202", 2022, 3).
				WithCategories(map[string]string{
					"bread": "bakery", "butter": "dairy", "milk": "dairy",
					"jam": "pantry", "coffee": "pantry",
				}).
				Repeat(4, "bread", "butter", "milk").
				Repeat(2, "milk", "coffee").
				Repeat(2, "bread", "jam").
				Basket("milk").
				Basket("coffee", "jam")
		},
	}
)

// Fixtures lists every predefined fixture.
func Fixtures() []Fixture {
	return []Fixture{FixturePair, FixtureMarket}
}
