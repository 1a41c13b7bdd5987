package bus

// Message kinds understood by the background process. Unknown kinds are
// ignored by every dispatcher so that surfaces running stale cached code
// stay tolerable.
const (
	// Events (no requestId).
	KindProfileScraped  = "profile-scraped"
	KindStateChanged    = "state-changed"
	KindShowLanding     = "show-landing"
	KindShowSyncProfile = "show-sync-profile"
	KindShowSettings    = "show-settings"

	// Requests (requestId present, exactly one reply expected).
	KindGetState       = "get-state"
	KindDispatchAction = "dispatch-action"
	KindSignIn         = "sign-in"
	KindSignUp         = "sign-up"
	KindSignOut        = "sign-out"
	KindResetPassword  = "reset-password"
	KindGetIdentity    = "get-identity"
	KindScrapeProfile  = "scrape-profile"
	KindGenerateLetter = "generate-letter"
)
