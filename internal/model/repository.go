package model

// User is a Bitbucket Server user.
type User struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Type         string `json:"type"`
}

// Project is a Bitbucket Server project, the owner of repositories.
type Project struct {
	ID          int    `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// Link is a named hyperlink from the API's "links" object.
type Link struct {
	Href string `json:"href"`
	Name string `json:"name"`
}

// Repository is a Bitbucket Server repository.
type Repository struct {
	ID          int     `json:"id"`
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Project     Project `json:"project"`
	Public      bool    `json:"public"`
	Forkable    bool    `json:"forkable"`
	Links       struct {
		Clone []Link `json:"clone"`
		Self  []Link `json:"self"`
	} `json:"links"`
}

// FullName returns "<PROJECT>/<slug>", the form accepted on the command line.
func (r Repository) FullName() string {
	return r.Project.Key + "/" + r.Slug
}

// CloneLink returns the clone URL advertised for the given protocol name
// ("http" or "ssh"), or "" when absent.
func (r Repository) CloneLink(name string) string {
	for _, l := range r.Links.Clone {
		if l.Name == name {
			return l.Href
		}
	}
	return ""
}
