package models

// DefaultUserID is the library owner used when a request does not name one.
// Conversations in the single-user deployment all share this profile.
const DefaultUserID = "default"
