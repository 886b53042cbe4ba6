package volume

// Dilate sets every voxel that has a set neighbour under c, n times
func (g *Grid) Dilate(c Connectivity, n int) *Grid {
	cur := g.Binary()
	for ; n > 0; n-- {
		cur = cur.morph(c, true)
	}
	return cur
}

// Erode clears every set voxel that has an unset neighbour under c, n times.
// Voxels outside the grid count as unset.
func (g *Grid) Erode(c Connectivity, n int) *Grid {
	cur := g.Binary()
	for ; n > 0; n-- {
		cur = cur.morph(c, false)
	}
	return cur
}

func (g *Grid) morph(c Connectivity, dilate bool) *Grid {
	out := g.Clone()
	offs := c.Offsets()
	nx, ny, nz := g.Dims[0], g.Dims[1], g.Dims[2]
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				idx := g.Index(i, j, k)
				set := g.Data[idx] != 0
				if set == dilate {
					continue
				}
				for _, o := range offs {
					ii, jj, kk := i+o[0], j+o[1], k+o[2]
					nset := g.InBounds(ii, jj, kk) && g.Data[g.Index(ii, jj, kk)] != 0
					if dilate && nset {
						out.Data[idx] = On
						break
					}
					if !dilate && !nset {
						out.Data[idx] = 0
						break
					}
				}
			}
		}
	}
	return out
}

// MorphOps dilates nDilate times and then erodes nErode times with face
// neighbours
func (g *Grid) MorphOps(nDilate, nErode int) *Grid {
	return g.Dilate(Conn6, nDilate).Erode(Conn6, nErode)
}

// Shell returns the voxels of the nDilate-times dilated grid that are not in
// the nErode-times eroded grid
func (g *Grid) Shell(nDilate, nErode int) *Grid {
	outer := g.Dilate(Conn6, nDilate)
	inner := g.Erode(Conn6, nErode)
	for i := range outer.Data {
		if inner.Data[i] != 0 {
			outer.Data[i] = 0
		}
	}
	return outer
}

// Open erodes then dilates n times; thin protrusions disappear
func (g *Grid) Open(c Connectivity, n int) *Grid {
	return g.Erode(c, n).Dilate(c, n)
}

// Close dilates then erodes n times; thin gaps are bridged
func (g *Grid) Close(c Connectivity, n int) *Grid {
	return g.Dilate(c, n).Erode(c, n)
}
