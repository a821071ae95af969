package models

// Author is the program-embedded author reference.
type Author struct {
	Username string `json:"username"`
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// Program is a program's metadata document. File contents and the
// thumbnail are stored separately; Files and Img only carry data between
// a request body and the store.
type Program struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Type      string   `json:"type"`
	Likes     []string `json:"likes"`
	Forks     []string `json:"forks"`
	Created   int64    `json:"created"`
	LastSaved int64    `json:"lastSaved"`
	Flags     []string `json:"flags"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	FileNames []string `json:"fileNames"`
	Author    Author   `json:"author"`

	Files map[string]string `json:"files,omitempty"`
	Img   string            `json:"img,omitempty"`
}

// ContentSummary is the minimal projection the ranking engine needs.
type ContentSummary struct {
	ID        string `json:"id"`
	LikeCount int    `json:"likeCount"`
	ForkCount int    `json:"forkCount"`
	Created   int64  `json:"created"`
}

// Summary projects a program into its ranking view.
func (p *Program) Summary() ContentSummary {
	return ContentSummary{
		ID:        p.ID,
		LikeCount: len(p.Likes),
		ForkCount: len(p.Forks),
		Created:   p.Created,
	}
}

// IPRecord tracks request pressure for one anonymized client address.
// Requests is reset every window; Accounts persists across resets and
// gates signups.
type IPRecord struct {
	Requests int      `json:"requests"`
	Accounts []string `json:"accounts,omitempty"`
}
