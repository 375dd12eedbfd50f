package model

// Comment is a pull request comment. Replies are nested under Comments.
type Comment struct {
	ID          int       `json:"id"`
	Version     int       `json:"version"`
	Text        string    `json:"text"`
	Author      *User     `json:"author"`
	CreatedDate int64     `json:"createdDate"`
	UpdatedDate int64     `json:"updatedDate"`
	Comments    []Comment `json:"comments"`
}

// AuthorName returns the author's slug, or "" when the author is missing.
func (c Comment) AuthorName() string {
	if c.Author == nil {
		return ""
	}
	return c.Author.Slug
}

// Reply pairs a reply with the comment it answers.
type Reply struct {
	Comment  Comment
	ParentID int
}

// Replies flattens the reply tree depth-first, in the order the API
// returned it.
func (c Comment) Replies() []Reply {
	var out []Reply
	for _, child := range c.Comments {
		out = append(out, Reply{Comment: child, ParentID: c.ID})
		out = append(out, child.Replies()...)
	}
	return out
}
