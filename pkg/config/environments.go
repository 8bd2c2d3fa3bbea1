package config

// Literal values are placeholders; replace them with the tenant, API and
// application registered for each deployment.

var development = Environment{
	Production:   false,
	APIServerURL: "http://127.0.0.1:5000", // the running drinks API
	Auth: Auth{
		Domain:      "udacity-cool-coffeeshop.us",
		Audience:    "drinks",
		ClientID:    "xc5xglbQ3qdu9YyZUH0HH1qUlX71IUgd",
		CallbackURL: "http://localhost:8100", // base url of the running frontend
	},
}

var production = Environment{
	Production:   true,
	APIServerURL: "https://api.udacity-cool-coffeeshop.us",
	Auth: Auth{
		Domain:      "udacity-cool-coffeeshop.us",
		Audience:    "drinks",
		ClientID:    "xc5xglbQ3qdu9YyZUH0HH1qUlX71IUgd",
		CallbackURL: "https://udacity-cool-coffeeshop.us",
	},
}

// Development returns the development build record.
func Development() Environment { return development }

// ProductionEnvironment returns the production build record.
func ProductionEnvironment() Environment { return production }
