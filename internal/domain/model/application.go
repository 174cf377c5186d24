package model

// Application is one credential of the authorization table.
type Application struct {
	Key           string
	Secret        string
	AuthorizeOpen bool
}
