package csg

import (
	"github.com/samber/lo"

	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/topo"
)

// kept is a region selected for the result, reversed when it bounds the
// result from the other side.
type kept struct {
	*region
	reverse bool
}

// assemble turns the kept regions into faces and groups them into one
// closed shell per connected component. Untouched faces are reused, or
// reversed with ReverseFace.
func (b *builder) assemble(regions []kept) ([]topo.ShellID, error) {
	if len(regions) == 0 {
		return nil, nil
	}
	faces := make([]topo.FaceID, 0, len(regions))
	for _, k := range regions {
		f, err := b.regionFace(k)
		if err != nil {
			return nil, kerrors.Wrap(err, kerrors.CsgDegenerate, "assemble face from %v", k.face)
		}
		faces = append(faces, f)
	}

	var shells []topo.ShellID
	for _, comp := range b.g.Components(faces) {
		sh, err := b.g.CreateShell(comp, true)
		if err != nil {
			return nil, err
		}
		shells = append(shells, sh)
	}
	return shells, nil
}

// regionFace creates the face of one kept region on its source surface.
func (b *builder) regionFace(k kept) (topo.FaceID, error) {
	if k.whole {
		if k.reverse {
			return b.g.ReverseFace(k.face)
		}
		b.reused++
		return k.face, nil
	}
	surface := b.g.Face(k.face).Surface
	if k.reverse {
		surface = surface.Reverse()
	}
	cycles := make([]topo.CycleID, len(k.cycles))
	for i, hes := range k.cycles {
		if k.reverse {
			hes = lo.Map(lo.Reverse(append([]topo.HalfEdge(nil), hes...)), func(h topo.HalfEdge, _ int) topo.HalfEdge {
				return h.Flip()
			})
		}
		c, err := b.g.CreateCycle(hes)
		if err != nil {
			return 0, err
		}
		cycles[i] = c
	}
	return b.g.CreateFace(surface, cycles[0], cycles[1:]...)
}

// reverseShell copies a closed shell with every face reversed.
func (b *builder) reverseShell(id topo.ShellID) (topo.ShellID, error) {
	src := b.g.Shell(id).Faces
	faces := make([]topo.FaceID, len(src))
	for i, f := range src {
		r, err := b.g.ReverseFace(f)
		if err != nil {
			return 0, err
		}
		faces[i] = r
	}
	return b.g.CreateShell(faces, true)
}
