package web

// Page identifies one of the site's sections.
type Page int

const (
	PageHome Page = iota
	PageAbout
	PageContact
)

// Pages lists the sections in menu order.
var Pages = []Page{PageHome, PageAbout, PageContact}

const MenuTitle = "Emprenix, your growing partner"

func (p Page) Label() string {
	switch p {
	case PageAbout:
		return "What can we do for you?"
	case PageContact:
		return "Contact"
	default:
		return "Home"
	}
}

func (p Page) Path() string {
	switch p {
	case PageAbout:
		return "/about"
	case PageContact:
		return "/contact"
	default:
		return "/"
	}
}

func (p Page) templateName() string {
	switch p {
	case PageAbout:
		return "about.html"
	case PageContact:
		return "contact.html"
	default:
		return "home.html"
	}
}

// PageFromPath maps a menu path back to its page. Unknown paths resolve to Home.
func PageFromPath(path string) Page {
	for _, p := range Pages {
		if p.Path() == path {
			return p
		}
	}
	return PageHome
}
