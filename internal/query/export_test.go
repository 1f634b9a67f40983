package query

// OnBuild registers fn to run after each snapshot is built, before it is cached
func (f *Facade) OnBuild(fn func(*Snapshot)) {
	f.built = fn
}
