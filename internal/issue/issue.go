// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies an Issue.
type Id int

const (
	// ConfigLoadFailedId is reported when config.cue cannot be loaded.
	ConfigLoadFailedId Id = iota + 1
	// MalformedWarURLId is reported for unparsable war: URLs and options.
	MalformedWarURLId
	// ManifestInvalidId is reported when an archive's manifest is missing,
	// duplicated or malformed.
	ManifestInvalidId
	// NotAnArchiveId is reported when the source is not a zip archive.
	NotAnArchiveId
	// RepositoryNotFoundId is reported when the module directory cannot be read.
	RepositoryNotFoundId
	// ModuleNotFoundId is reported when a named module is not in the repository.
	ModuleNotFoundId
	// DependencyCycleId is reported when dependencies cannot be ordered.
	DependencyCycleId
)

type (
	// MarkdownMsg is guidance text in Markdown.
	MarkdownMsg string
	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is longer, rendered guidance for a class of errors.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Id returns the issue identifier.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the raw guidance.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns the documentation links of the issue.
func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the guidance for a terminal using a glamour style such as
// "dark", "light" or "notty".
func (i *Issue) Render(stylePath string) (string, error) {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			sb.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(sb.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load the configuration!

The configuration file exists but could not be read or does not match the schema.

## Things you can try:
- Print the configuration wabkit would use:
~~~
$ wabkit config show
~~~
- Check WABKIT_* environment variables, they override the file
- Start over from the defaults:
~~~
$ wabkit config init
~~~`,
	}

	malformedWarURLIssue = &Issue{
		id: MalformedWarURLId,
		mdMsg: `
# Malformed war: URL!

Deployment URLs have the form ` + "`war:<archive-url>?<key>=<value>&...`" + `.

## Things you can try:
- Quote the URL so the shell does not interpret ` + "`?` and `&`" + `
- Use a context path that starts with a slash:
~~~
$ wabkit transform 'war:file:///srv/shop.war?Web-ContextPath=/shop'
~~~
- Import-Package and Web-ContextPath are case-insensitive keys, each may appear once`,
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# The archive manifest is unusable!

Every archive needs exactly one ` + "`META-INF/MANIFEST.MF`" + ` entry in manifest syntax.

## Common issues:
- The manifest is missing or stored under a different case
- A header line is longer than 72 bytes without a continuation line
- A header name contains characters other than letters, digits, '-' and '_'

## Things you can try:
~~~
$ unzip -p app.war META-INF/MANIFEST.MF
~~~`,
	}

	notAnArchiveIssue = &Issue{
		id: NotAnArchiveId,
		mdMsg: `
# Not an archive!

The source could be opened but is not a zip file.

## Things you can try:
- Check the URL points at the .war or .jar file and not at a directory
- Verify the file was not truncated while downloading:
~~~
$ unzip -t app.war
~~~`,
	}

	repositoryNotFoundIssue = &Issue{
		id: RepositoryNotFoundId,
		mdMsg: `
# Module repository not found!

The module directory could not be read.

## Things you can try:
- Pass the directory explicitly with ` + "`--repo`" + `
- Set ` + "`repository.dir`" + ` in config.cue or WABKIT_REPOSITORY_DIR`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

No module in the repository has that symbolic name or file name.

## Things you can try:
- List what was loaded:
~~~
$ wabkit modules
~~~
- Modules without META-INF/MANIFEST.MF are ignored`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

The dependencies cannot be put in an order where every module comes after
what it depends on. Scanning still works; only ` + "`--order`" + ` needs an acyclic graph.

## Things you can try:
- Run without ` + "`--order`" + ` to see the closure
- Check Require-Bundle and Import-Package headers of the modules named in the error`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		malformedWarURLIssue.Id():    malformedWarURLIssue,
		manifestInvalidIssue.Id():    manifestInvalidIssue,
		notAnArchiveIssue.Id():       notAnArchiveIssue,
		repositoryNotFoundIssue.Id(): repositoryNotFoundIssue,
		moduleNotFoundIssue.Id():     moduleNotFoundIssue,
		dependencyCycleIssue.Id():    dependencyCycleIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return int(a.id - b.id) })
}

// Get returns the issue with the given id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
