// compile turns rule source content into immutable compiled artifacts and
// caches them by content fingerprint.
package compile

import (
	"errors"
	"time"

	"github.com/hyperjumptech/grule-rule-engine/ast"
	"github.com/hyperjumptech/grule-rule-engine/builder"
	"github.com/hyperjumptech/grule-rule-engine/pkg"

	"github.com/quy267/spring-drools-integration-sub002/internal/errs"
)

// LibraryVersion versions compiled knowledge bases within the engine library.
const LibraryVersion = "0.0.1"

var errKnowledgeBaseEmpty = errors.New("knowledge base instance empty")

// Artifact is the immutable, shareable product of compiling one rule
// source. Many sessions read it concurrently; it is never mutated after
// compilation.
type Artifact struct {
	SourceID    string
	Fingerprint string
	Diagnostics []string
	CompiledAt  time.Time

	library *ast.KnowledgeLibrary
}

// Compile builds the given GRL content into an Artifact. Failures return a
// *errs.CompilationError carrying the engine diagnostics.
func Compile(sourceID, fingerprint string, content []byte) (*Artifact, error) {
	library := ast.NewKnowledgeLibrary()
	rb := builder.NewRuleBuilder(library)
	if err := rb.BuildRuleFromResource(sourceID, LibraryVersion, pkg.NewBytesResource(content)); err != nil {
		return nil, &errs.CompilationError{
			Source:      sourceID,
			Fingerprint: fingerprint,
			Diagnostics: []string{err.Error()},
			Err:         err,
		}
	}

	return &Artifact{
		SourceID:    sourceID,
		Fingerprint: fingerprint,
		CompiledAt:  time.Now(),
		library:     library,
	}, nil
}

// NewKnowledgeBase instantiates a fresh stateful knowledge base from the
// artifact. Each execution session owns exactly one instance.
func (a *Artifact) NewKnowledgeBase() (*ast.KnowledgeBase, error) {
	kb, err := a.library.NewKnowledgeBaseInstance(a.SourceID, LibraryVersion)
	if err != nil {
		return nil, &errs.SessionCreationError{Source: a.SourceID, Err: err}
	}
	if kb == nil {
		return nil, &errs.SessionCreationError{Source: a.SourceID, Err: errKnowledgeBaseEmpty}
	}
	return kb, nil
}
